package handlers

import (
	"net/http"

	"github.com/micro-ha/bloomin-presence/internal/pipeline"
)

type bleCacheView struct {
	ServiceUUID        string `json:"service_uuid"`
	CharacteristicUUID string `json:"characteristic_uuid"`
}

type frameView struct {
	ID         string           `json:"id"`
	Host       string           `json:"host"`
	BLEEnabled bool             `json:"ble_enabled"`
	BLEAddress string           `json:"ble_address,omitempty"`
	BLECache   *bleCacheView    `json:"ble_cache,omitempty"`
	LastReport *pipeline.Report `json:"last_report,omitempty"`
}

// GetFrame describes the managed frame and its most recent run.
func (a *API) GetFrame(w http.ResponseWriter, _ *http.Request) {
	target := a.runner.Target()
	view := frameView{
		ID:         target.ID,
		Host:       target.Host,
		BLEEnabled: target.BLEEnabled(),
		BLEAddress: target.BLEAddr.String(),
	}
	if cache := target.BLECache(); !cache.Empty() {
		view.BLECache = &bleCacheView{ServiceUUID: cache.ServiceUUID, CharacteristicUUID: cache.CharacteristicUUID}
	}
	if report, ok := a.runner.LastReport(); ok {
		view.LastReport = &report
	}
	writeJSON(w, http.StatusOK, view)
}

// DiscoverBLE forces a fresh characteristic discovery.
func (a *API) DiscoverBLE(w http.ResponseWriter, r *http.Request) {
	target := a.runner.Target()
	if a.discoverer == nil || !target.BLEEnabled() {
		writeError(w, http.StatusConflict, "ble_disabled", "BLE wake is not enabled for this frame")
		return
	}
	cache, err := a.discoverer.Discover(r.Context(), target)
	if err != nil {
		a.logger.Warn("ble discovery failed", "frame", target.ID, "err", err)
		writeError(w, http.StatusBadGateway, "discovery_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, bleCacheView{ServiceUUID: cache.ServiceUUID, CharacteristicUUID: cache.CharacteristicUUID})
}
