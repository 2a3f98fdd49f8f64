// Package chat implements the messaging core: the conversation directory,
// the active conversation session, and the feed-merge rules that reconcile
// optimistic local sends with the service's broadcasts.
package chat

// channelSeparator joins the two participant ids into a channel id.
const channelSeparator = "-"

// ChannelID derives the channel identifier for a pair of participants.
// The ids are sorted lexicographically before joining, so both sides of a
// conversation compute the same channel no matter who initiates:
// ChannelID(a, b) == ChannelID(b, a).
func ChannelID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + channelSeparator + b
}
