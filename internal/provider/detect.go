package provider

import (
	"github.com/parleyhq/parley/internal/perrors"
)

// Pair is the two providers a debate runs with.
type Pair struct {
	Primary Provider
	Counter Provider
}

// Detect picks the best available provider pair by fixed priority:
// bridge primary with CLI counter, then CLI against itself, then bridge
// against itself. Two instances of the same backend still argue different
// roles, which is weaker than two independent backends but better than no
// debate.
func Detect(bridge, cli Provider) (Pair, error) {
	bridgeOK := bridge != nil && bridge.IsAvailable()
	cliOK := cli != nil && cli.IsAvailable()

	switch {
	case bridgeOK && cliOK:
		return Pair{Primary: bridge, Counter: cli}, nil
	case cliOK:
		return Pair{Primary: cli, Counter: cli}, nil
	case bridgeOK:
		return Pair{Primary: bridge, Counter: bridge}, nil
	}

	return Pair{}, perrors.NewProviderError(
		"no reasoning providers available", perrors.ErrProviderUnavailable).
		WithRetryable(false)
}
