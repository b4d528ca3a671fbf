package frame

import "strings"

// OverlayStyle selects how presence is drawn on the image.
type OverlayStyle string

const (
	StyleBadge OverlayStyle = "badge"
	StyleText  OverlayStyle = "text"
	StyleIcon  OverlayStyle = "icon"
)

// Corner is the image corner the overlay is anchored to.
type Corner string

const (
	CornerBottomRight Corner = "bottom_right"
	CornerBottomLeft  Corner = "bottom_left"
	CornerTopRight    Corner = "top_right"
	CornerTopLeft     Corner = "top_left"
)

// OverlaySpec is the immutable per-frame overlay configuration.
type OverlaySpec struct {
	Style     OverlayStyle
	Corner    Corner
	BadgeSize int
	IconSize  int
	FontSize  float64
	Margin    int
	Quality   int
	HomeText  string
	AwayText  string
}

// DefaultOverlaySpec returns the stock bottom-right badge.
func DefaultOverlaySpec() OverlaySpec {
	return OverlaySpec{
		Style:     StyleBadge,
		Corner:    CornerBottomRight,
		BadgeSize: 40,
		IconSize:  32,
		FontSize:  16,
		Margin:    15,
		Quality:   95,
		HomeText:  "Home",
		AwayText:  "Away",
	}
}

// Normalize fills zero values from DefaultOverlaySpec.
func (s OverlaySpec) Normalize() OverlaySpec {
	d := DefaultOverlaySpec()
	if s.Style == "" {
		s.Style = d.Style
	}
	if s.Corner == "" {
		s.Corner = d.Corner
	}
	if s.BadgeSize <= 0 {
		s.BadgeSize = d.BadgeSize
	}
	if s.IconSize <= 0 {
		s.IconSize = d.IconSize
	}
	if s.FontSize <= 0 {
		s.FontSize = d.FontSize
	}
	if s.Margin < 0 {
		s.Margin = d.Margin
	}
	if s.Quality <= 0 || s.Quality > 100 {
		s.Quality = d.Quality
	}
	if strings.TrimSpace(s.HomeText) == "" {
		s.HomeText = d.HomeText
	}
	if strings.TrimSpace(s.AwayText) == "" {
		s.AwayText = d.AwayText
	}
	return s
}

// ParseOverlayStyle validates a configured style name.
func ParseOverlayStyle(raw string) (OverlayStyle, error) {
	switch style := OverlayStyle(strings.ToLower(strings.TrimSpace(raw))); style {
	case StyleBadge, StyleText, StyleIcon:
		return style, nil
	case "":
		return StyleBadge, nil
	default:
		return "", &ValidationError{Field: "overlay_style", Reason: "unknown style " + raw}
	}
}

// ParseCorner validates a configured overlay position.
func ParseCorner(raw string) (Corner, error) {
	switch corner := Corner(strings.ToLower(strings.TrimSpace(raw))); corner {
	case CornerBottomRight, CornerBottomLeft, CornerTopRight, CornerTopLeft:
		return corner, nil
	case "":
		return CornerBottomRight, nil
	default:
		return "", &ValidationError{Field: "overlay_position", Reason: "unknown position " + raw}
	}
}

// Label returns the localized text for a presence state.
func (s OverlaySpec) Label(state PresenceState) string {
	if state == PresenceHome {
		return s.HomeText
	}
	return s.AwayText
}
