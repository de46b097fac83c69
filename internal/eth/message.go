package eth

import (
	"fmt"
	"time"

	"github.com/layer-3/walletauth/core"
)

// ChallengeDomain scopes challenge messages to one relying party so a
// signature collected by another site cannot be replayed here.
type ChallengeDomain struct {
	Domain  string
	URI     string
	ChainID int64
}

const challengeTemplate = "%s wants you to sign in with your Ethereum account:\n" +
	"%s\n" +
	"\n" +
	"Sign this message to verify your wallet ownership.\n" +
	"\n" +
	"URI: %s\n" +
	"Chain ID: %d\n" +
	"Nonce: %s\n" +
	"Issued At: %s"

// Message renders the exact text the wallet is asked to sign for challenge.
// The output depends only on the domain and the stored challenge.
func (d ChallengeDomain) Message(challenge *core.Challenge) string {
	return fmt.Sprintf(challengeTemplate,
		d.Domain,
		challenge.Address.Hex(),
		d.URI,
		d.ChainID,
		challenge.Nonce,
		challenge.IssuedAt.UTC().Format(time.RFC3339),
	)
}
