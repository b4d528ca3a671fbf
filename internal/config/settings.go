package config

import (
	"strings"

	"github.com/micro-ha/bloomin-presence/internal/domain/frame"
)

const (
	DeliveryHTTP        = "http"
	DeliveryMediaPlayer = "media_player"
)

// Settings is the validated, immutable frame configuration.
type Settings struct {
	FrameID           string
	Host              string
	BLEAddress        frame.Address
	BLEAdapter        string
	WhistleEntityID   string
	Persons           []string
	Source            frame.SourceRef
	Overlay           frame.OverlaySpec
	Delivery          string
	MediaPlayerEntity string
	DiscoverEndpoints bool
}

// Settings validates the frame options. Errors are *frame.ValidationError.
func (c Config) Settings() (Settings, error) {
	o := c.Frame
	s := Settings{
		FrameID:           strings.TrimSpace(o.FrameID),
		Host:              strings.TrimSpace(o.Host),
		BLEAdapter:        strings.TrimSpace(o.BLEAdapter),
		WhistleEntityID:   strings.TrimSpace(o.WhistleEntityID),
		Delivery:          strings.ToLower(strings.TrimSpace(o.Delivery)),
		MediaPlayerEntity: strings.TrimSpace(o.MediaPlayerEntity),
		DiscoverEndpoints: o.DiscoverEndpoints,
	}
	if s.FrameID == "" {
		return Settings{}, invalid("frame_id", "must not be empty")
	}
	if s.Host == "" {
		return Settings{}, invalid("frame_host", "must not be empty")
	}

	if o.UseBLEWake {
		if strings.TrimSpace(o.BLEMACAddress) == "" {
			return Settings{}, invalid("ble_mac_address", "required when use_ble_wake is enabled")
		}
		addr, err := frame.NormalizeAddress(o.BLEMACAddress)
		if err != nil {
			return Settings{}, err
		}
		s.BLEAddress = addr
	}

	for _, entity := range o.PersonEntities {
		entity = strings.TrimSpace(entity)
		if entity == "" {
			continue
		}
		if !strings.HasPrefix(entity, "person.") {
			return Settings{}, invalid("person_entities", entity+" is not a person entity")
		}
		s.Persons = append(s.Persons, entity)
	}
	if len(s.Persons) == 0 {
		return Settings{}, invalid("person_entities", "at least one person entity is required")
	}

	switch strings.ToLower(strings.TrimSpace(o.ImageSource)) {
	case "", string(frame.SourceFolder):
		if strings.TrimSpace(o.MediaFolder) == "" {
			return Settings{}, invalid("media_folder", "must not be empty")
		}
		s.Source = frame.Folder(strings.TrimSpace(o.MediaFolder))
	case string(frame.SourceFile):
		if strings.TrimSpace(o.ImagePath) == "" {
			return Settings{}, invalid("image_path", "required when image_source is file")
		}
		s.Source = frame.File(strings.TrimSpace(o.ImagePath))
	default:
		return Settings{}, invalid("image_source", "must be folder or file")
	}

	style, err := frame.ParseOverlayStyle(o.OverlayStyle)
	if err != nil {
		return Settings{}, err
	}
	corner, err := frame.ParseCorner(o.OverlayPosition)
	if err != nil {
		return Settings{}, err
	}
	spec := frame.OverlaySpec{
		Style:     style,
		Corner:    corner,
		BadgeSize: o.BadgeSize,
		IconSize:  o.IconSize,
		FontSize:  o.FontSize,
		Margin:    -1,
		Quality:   o.ImageQuality,
		HomeText:  o.HomeText,
		AwayText:  o.AwayText,
	}
	if o.Margin != nil {
		spec.Margin = *o.Margin
	}
	s.Overlay = spec.Normalize()

	switch s.Delivery {
	case "", DeliveryHTTP:
		s.Delivery = DeliveryHTTP
	case DeliveryMediaPlayer:
		if !strings.HasPrefix(s.MediaPlayerEntity, "media_player.") {
			return Settings{}, invalid("media_player_entity_id", "required for media_player delivery")
		}
	default:
		return Settings{}, invalid("delivery", "must be http or media_player")
	}
	return s, nil
}

func invalid(field, reason string) error {
	return &frame.ValidationError{Field: field, Reason: reason}
}
