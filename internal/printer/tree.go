package printer

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dyluth/canopy/internal/resource"
	"github.com/dyluth/canopy/internal/tree"
)

// maxListedFailures caps how many degraded fetches PartialLoad lists.
const maxListedFailures = 5

// PartialLoad warns when snap is missing subtrees because some fetches were
// degraded. It prints nothing for complete snapshots.
func PartialLoad(snap *tree.Snapshot) {
	if snap == nil || !snap.Partial() {
		return
	}

	noun := "subtree"
	if len(snap.Failures) != 1 {
		noun = "subtrees"
	}
	Warning("Partial tree: %d %s could not be loaded and are shown empty\n", len(snap.Failures), noun)

	for i, f := range snap.Failures {
		if i == maxListedFailures {
			warnStyle.Fprintf(stderr, "   ...and %d more\n", len(snap.Failures)-maxListedFailures)
			break
		}
		warnStyle.Fprintf(stderr, "   %s under %s: %v\n", f.Level.Label(), f.ParentID, f.Err)
	}
}

// Explain prints err with the suggestions that fit its type and returns the
// short error Cobra reports. Unrecognised errors are printed as-is.
func Explain(err error) error {
	if err == nil {
		return nil
	}

	var (
		statusErr   *resource.StatusError
		orphanErr   *tree.OrphanChildError
		parentErr   *tree.UnknownParentError
		fetchErr    *tree.FetchFailure
		mutationErr *tree.MutationFailure
	)

	switch {
	case errors.Is(err, tree.ErrNotLoaded):
		return Error("No tree loaded",
			"The command needs a loaded tree but none is available.",
			[]string{"Run 'canopy show <root-id>' first to check the root loads"})

	case errors.Is(err, tree.ErrSuperseded):
		return Error("Load superseded",
			"A newer load of the tree finished first, so this result was discarded.",
			[]string{"Retry the command"})

	case errors.Is(err, context.DeadlineExceeded):
		return Error("Request timed out",
			fmt.Sprintf("The backend did not answer in time: %v", err),
			[]string{"Raise api.timeout in canopy.yml", "Lower load.max_concurrency if the backend is overloaded"})

	case errors.As(err, &orphanErr):
		return ErrorWithContext(fmt.Sprintf("%s not found", orphanErr.Level.Label()),
			err.Error(),
			map[string]string{"Parent": orphanErr.ParentID.String(), "ID": orphanErr.ChildID.String()},
			[]string{"Check the id with 'canopy show <root-id>'", "Pass the correct --parent"})

	case errors.As(err, &parentErr):
		return ErrorWithContext(fmt.Sprintf("Cannot create %s there", parentErr.Level.Label()),
			err.Error(),
			map[string]string{"Parent": parentErr.ParentID.String(), "Root": parentErr.RootID.String()},
			[]string{"Check the parent id with 'canopy show <root-id>'"})

	case errors.As(err, &statusErr) && (statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden):
		return ErrorWithContext("Backend rejected credentials",
			err.Error(),
			map[string]string{"Status": fmt.Sprintf("%d", statusErr.StatusCode)},
			[]string{"Export a valid token in the variable named by api.token_env", "Check identity.user_id in canopy.yml"})

	case errors.As(err, &mutationErr):
		return ErrorWithContext(fmt.Sprintf("Failed to %s %s", mutationErr.Op, mutationErr.Level.Label()),
			"The backend refused the change. Local state was not modified.",
			map[string]string{"ID": mutationErr.ID.String(), "Cause": fmt.Sprintf("%v", mutationErr.Err)},
			nil)

	case errors.As(err, &fetchErr):
		return ErrorWithContext("Failed to load tree",
			fmt.Sprintf("Fetching %s failed, so no tree was produced.", fetchErr.Level.Label()),
			map[string]string{"Parent": fetchErr.ParentID.String(), "Cause": fmt.Sprintf("%v", fetchErr.Err)},
			[]string{"Check api.base_url in canopy.yml", "Set load.strict: false to degrade failed subtrees instead"})
	}

	return Error("Error", err.Error(), nil)
}
