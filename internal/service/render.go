package service

import (
	"github.com/atinyakov/BoxtalConnect/internal/models"
)

// Notice levels.
const (
	levelInfo    = "info"
	levelSuccess = "success"
	levelWarning = "warning"
	levelError   = "error"
)

// RenderNotice turns n into its displayable form. ok is false for kinds with
// no renderer.
func RenderNotice(n models.Notice) (r models.RenderedNotice, ok bool) {
	r = models.RenderedNotice{ID: n.Key, Kind: n.Kind, Payload: n.Payload, Dismissable: true}

	switch n.Kind {
	case models.NoticeUpdate:
		r.Level = levelWarning
		r.Message = "A new version of Boxtal Connect is available."
		if v, _ := n.Payload["version"].(string); v != "" {
			r.Message = "Boxtal Connect " + v + " is available."
		}
	case models.NoticeSetupWizard:
		r.Level = levelInfo
		r.Message = "Connect your shop to a Boxtal account to start shipping."
		r.Dismissable = false
	case models.NoticePairing:
		if payloadInt(n.Payload, "result") == 1 {
			r.Level = levelSuccess
			r.Message = "Your shop is now paired with Boxtal."
		} else {
			r.Level = levelError
			r.Message = "Pairing with Boxtal failed. Please try again from your Boxtal account."
		}
	case models.NoticePairingUpdate:
		r.Level = levelWarning
		r.Message = "Boxtal requested to update the pairing of this shop. Enter the validation code to confirm."
		r.Dismissable = false
	case models.NoticeSetupFailure:
		r.Level = levelError
		r.Message = "Boxtal Connect could not reach the Boxtal platform. Reload this page to try again."
	case models.NoticeCustom:
		r.Level, _ = n.Payload["level"].(string)
		if r.Level == "" {
			r.Level = levelInfo
		}
		r.Message, _ = n.Payload["message"].(string)
	default:
		return models.RenderedNotice{}, false
	}
	return r, true
}

// payloadInt reads a numeric payload field that may have been through JSON.
func payloadInt(p map[string]any, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case bool:
		if v {
			return 1
		}
	}
	return 0
}
