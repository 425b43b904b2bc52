package connectors

const (
	TopicConnStatus = "conn.status"
	TopicFeedEvent  = "feed.event"
	TopicFeedEnded  = "feed.ended"
	TopicRawFrame   = "raw.frame.in"
)
