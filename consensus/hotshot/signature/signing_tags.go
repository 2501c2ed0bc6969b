package signature

// List of domain separation tags for protocol signatures.
//
// Each signature hashes the tag together with the message during the
// hash-to-curve step, which scopes the signature to a single sub-protocol.

// protocol prefix
const protocolPrefix = "HOTSHOT-"

// protocol signature version
const protocolVersion = "-V00-"

// an example of domain tag output is :
// HOTSHOT-VOTE-V00-BN256G1
func tag(domain string) string {
	return protocolPrefix + domain + protocolVersion + "BN256G1"
}

var (
	// VoteTag is used for every SimpleVote and for the aggregated certificates
	// built from them.
	VoteTag = tag("VOTE")
	// ProposalTag is used by leaders to sign the leaf commitment of their proposal.
	ProposalTag = tag("PROPOSAL")
	// VidShareTag is used by the disperser to sign a VID payload commitment.
	VidShareTag = tag("VID")
	// DaProposalTag is used by leaders to sign the payload they send the DA committee.
	DaProposalTag = tag("DA_PROPOSAL")
	// LightClientStateTag is used for light client state update votes.
	LightClientStateTag = tag("LIGHT_CLIENT_STATE")
)
