package api

const (
	// PingEndpoint is the endpoint for checking the API status
	PingEndpoint = "/ping"
	// VoteEndpoint is the endpoint for casting a ballot
	VoteEndpoint = "/vote"
	// ElectionURLParam is the URL parameter holding the election id
	ElectionURLParam = "electionId"
	// ElectionResultsEndpoint returns the tallies of an election
	ElectionResultsEndpoint = "/elections/{" + ElectionURLParam + "}/results"
	// ElectionEligibilityEndpoint returns the eligibility status of the caller
	ElectionEligibilityEndpoint = "/elections/{" + ElectionURLParam + "}/eligibility"
	// ElectionVotedEndpoint reports whether the caller has voted
	ElectionVotedEndpoint = "/elections/{" + ElectionURLParam + "}/voted"
	// MetricsEndpoint exposes the prometheus metrics
	MetricsEndpoint = "/metrics"
)
