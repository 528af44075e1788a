package donation

import (
	"sort"
)

// Channel identifies one outbound publication target.
type Channel string

const (
	ChannelTwitter  Channel = "twitter"
	ChannelMastodon Channel = "mastodon"
	ChannelTelegram Channel = "telegram"
)

// DeliveryState tracks per-channel delivery of a single donation.
// A channel missing from the map has not been delivered.
type DeliveryState map[Channel]bool

func (d DeliveryState) Delivered(channel Channel) bool {
	return d[channel]
}

// Channels returns the channels present in the state in sorted order.
func (d DeliveryState) Channels() []Channel {
	channels := make([]Channel, 0, len(d))
	for channel := range d {
		channels = append(channels, channel)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })
	return channels
}

type Record struct {
	Date        string
	Amount      string
	Category    string
	Grantee     string
	Link        string
	Why         string
	Fingerprint string
	DateSeen    string // YYYY-MM-DD, set on first insert only
	Delivered   DeliveryState
}

// MarkDelivered flips the delivery flag for channel. Flags only ever move to true.
func (r *Record) MarkDelivered(channel Channel) {
	if r.Delivered == nil {
		r.Delivered = make(DeliveryState)
	}
	r.Delivered[channel] = true
}

func (r *Record) IsDelivered(channel Channel) bool {
	return r.Delivered.Delivered(channel)
}
