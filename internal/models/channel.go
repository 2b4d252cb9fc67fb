package models

// Channel identifies one output modality. Resolved once at configuration
// load, never re-parsed from device name strings per call.
type Channel int

const (
	ChannelHaptic Channel = iota
	ChannelVisual
	ChannelSmartHome
)

func (c Channel) String() string {
	switch c {
	case ChannelHaptic:
		return "haptic"
	case ChannelVisual:
		return "visual"
	case ChannelSmartHome:
		return "smart_home"
	default:
		return "unknown"
	}
}
