package models

type Channel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username,omitempty"`
	Platform string `json:"platform"`
}

type Preset struct {
	Name            string `json:"name"`
	Icon            string `json:"icon,omitempty"`
	DelayMinutes    int    `json:"delayMinutes"`
	IntervalMinutes int    `json:"intervalMinutes"`
	IntervalType    string `json:"intervalType"`
}

// Settings holds operator preferences. API keys are stored AES-GCM
// encrypted; the *Enc fields never contain plaintext.
type Settings struct {
	DefaultChannels []string `json:"defaultChannels"`
	DefaultDelay    int      `json:"defaultDelay"`
	DefaultTimezone string   `json:"defaultTimezone"`

	PublisherAPIKeyEnc string `json:"publisherApiKeyEnc,omitempty"`
	RewriteAPIKeyEnc   string `json:"rewriteApiKeyEnc,omitempty"`
	RewriteModel       string `json:"rewriteModel,omitempty"`
}
