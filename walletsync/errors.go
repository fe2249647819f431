package walletsync

import "errors"

// ErrRoundAborted is wrapped around any error that aborts a sync round
// before commit: a malformed backend response aborts the round with no
// partial commit.
var ErrRoundAborted = errors.New("walletsync: round aborted, no mutations committed")
