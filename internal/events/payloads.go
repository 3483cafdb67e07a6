package events

// CookiesChangedPayload carries the new bank and production rate.
type CookiesChangedPayload struct {
	Cookies          float64 `json:"cookies"`
	CookiesPerSecond float64 `json:"cookiesPerSecond"`
}

// ClickPayload is consumed by renderers for floating text and sound.
type ClickPayload struct {
	Amount float64 `json:"amount"`
}

// UpgradePurchasedPayload reports a successful purchase.
type UpgradePurchasedPayload struct {
	Kind  string  `json:"kind"`
	Level int     `json:"level"`
	Cost  float64 `json:"cost"`
}

// PurchaseRejectedPayload reports why a purchase did not happen.
type PurchaseRejectedPayload struct {
	Kind      string  `json:"kind"`
	Reason    string  `json:"reason"`
	Required  float64 `json:"required"`
	Available float64 `json:"available"`
}

// PrestigedPayload reports a completed prestige.
type PrestigedPayload struct {
	Gain       int     `json:"gain"`
	Multiplier float64 `json:"multiplier"`
}

// PrestigeRejectedPayload reports a prestige attempted below the threshold.
type PrestigeRejectedPayload struct {
	Reason   string  `json:"reason"`
	Cookies  float64 `json:"cookies"`
	Required float64 `json:"required"`
}

// SettingsChangedPayload mirrors the persisted settings.
type SettingsChangedPayload struct {
	SoundEnabled bool   `json:"soundEnabled"`
	NumberFormat string `json:"numberFormat"`
}

// PersistencePayload describes a save or load outcome.
type PersistencePayload struct {
	Key   string `json:"key"`
	Bytes int    `json:"bytes,omitempty"`
	Error string `json:"error,omitempty"`
}

// RestoredPayload reports shop progress recovered from the event journal.
type RestoredPayload struct {
	Levels     map[string]int `json:"levels"`
	Multiplier float64        `json:"multiplier"`
}
