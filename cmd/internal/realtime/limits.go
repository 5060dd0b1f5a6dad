package realtime

import "time"

const (
	// Max bytes per websocket frame read (hard limit).
	maxFrameBytes = 64 << 10 // 64 KiB

	// Max outbound chat message length (runes).
	maxMessageChars = 4000
)

const (
	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second
	maxPingFailures   = 3

	writeTimeout = 5 * time.Second
	closeGrace   = 2 * time.Second

	// Outbound chat rate limit (messages per window).
	sendRateEvents = 20
	sendRateWindow = 10 * time.Second
)
