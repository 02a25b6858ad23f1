package model

// ActivityType labels an entry in the remote user activity log
type ActivityType string

const (
	ActivityJoinServer         ActivityType = "join_server"
	ActivityLeaveServer        ActivityType = "leave_server"
	ActivityPlaytimeUpdate     ActivityType = "playtime_update"
	ActivityTimeLimitExceeded  ActivityType = "time_limit_exceeded"
	ActivityReputationGiven    ActivityType = "reputation_given"
	ActivityReputationModified ActivityType = "reputation_modified"
)
