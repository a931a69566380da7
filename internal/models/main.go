// Package models defines the core data structures for notices, pairing
// requests and shop configuration.
package models

// NoticeKind identifies which renderer a notice is displayed with.
type NoticeKind string

const (
	// NoticeUpdate tells the admin a newer version of the connector is available.
	NoticeUpdate NoticeKind = "update"
	// NoticeSetupWizard invites the admin to pair the shop with a Boxtal account.
	NoticeSetupWizard NoticeKind = "setup-wizard"
	// NoticePairing reports the result of a pairing request.
	NoticePairing NoticeKind = "pairing"
	// NoticePairingUpdate asks the admin to confirm a re-pairing negotiation.
	NoticePairingUpdate NoticeKind = "pairing-update"
	// NoticeSetupFailure reports that the platform could not be reached during setup.
	NoticeSetupFailure NoticeKind = "setup-failure"
	// NoticeCustom carries a free-form message in its payload.
	NoticeCustom NoticeKind = "custom"
)

// CoreNoticeKinds are stored durably under their own name and never expire.
var CoreNoticeKinds = []NoticeKind{
	NoticeUpdate,
	NoticeSetupWizard,
	NoticePairing,
	NoticePairingUpdate,
}

// IsCore reports whether k is one of CoreNoticeKinds.
func (k NoticeKind) IsCore() bool {
	for _, c := range CoreNoticeKinds {
		if c == k {
			return true
		}
	}
	return false
}

// Notice is an active admin-facing message.
type Notice struct {
	// Key is the kind name for core notices and a generated token otherwise.
	Key string
	// Kind selects the renderer.
	Kind NoticeKind
	// Payload holds extra rendering data, e.g. {"result": 1}.
	Payload map[string]any
}

// RenderedNotice is the displayable form of a Notice.
type RenderedNotice struct {
	ID          string         `json:"id"`
	Kind        NoticeKind     `json:"kind"`
	Level       string         `json:"level"`
	Message     string         `json:"message"`
	Dismissable bool           `json:"dismissable"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// PairRequest is the decrypted body of PATCH /shop/pair.
type PairRequest struct {
	AccessKey       string `json:"accessKey" validate:"required"`
	SecretKey       string `json:"secretKey" validate:"required"`
	// PairCallbackURL is opaque to the shop and only forwarded to the platform.
	PairCallbackURL string `json:"pairCallbackUrl,omitempty"`
}

// DeleteConfigurationRequest is the decrypted body of DELETE /shop/configuration.
type DeleteConfigurationRequest struct {
	AccessKey string `json:"accessKey" validate:"required"`
}

// ShopConfiguration is the shipping configuration pushed by the platform.
type ShopConfiguration struct {
	MapBootstrapURL     string         `json:"mapBootstrapUrl" validate:"required,url"`
	MapTokenURL         string         `json:"mapTokenUrl" validate:"required,url"`
	ParcelPointNetworks map[string]any `json:"parcelPointNetworks" validate:"required"`
	TrackingEvents      []any          `json:"trackingEvents,omitempty"`
}

// ModuleConfig is the platform answer to the setup wizard bootstrap call.
type ModuleConfig struct {
	MapsEndpointURL string `json:"mapsEndpointUrl"`
	SignupPageURL   string `json:"signupPageUrl"`
}
