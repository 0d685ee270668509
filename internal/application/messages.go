package application

// Bus payloads. Each carries what a subscriber needs to build its broadcast
// frame without loading the aggregate again.

type OperationMessage struct {
	SessionID        string       `json:"sessionId"`
	Operation        OperationDto `json:"operation"`
	ResultingContent string       `json:"resultingContent"`
	NewVersion       int          `json:"newVersion"`
}

type ParticipantJoinedMessage struct {
	SessionID       string     `json:"sessionId"`
	ParticipantID   string     `json:"participantId"`
	ParticipantName string     `json:"participantName"`
	Session         SessionDto `json:"session"`
}

type ParticipantLeftMessage struct {
	SessionID             string `json:"sessionId"`
	ParticipantID         string `json:"participantId"`
	RemainingParticipants int    `json:"remainingParticipants"`
}

// PartitionKey keeps one session's messages in order on partitioned buses.
func (m OperationMessage) PartitionKey() string         { return m.SessionID }
func (m ParticipantJoinedMessage) PartitionKey() string { return m.SessionID }
func (m ParticipantLeftMessage) PartitionKey() string   { return m.SessionID }
