package mirror

import (
	"fmt"

	"github.com/dyluth/canopy/pkg/okr"
)

// Redis key pattern helpers. See the package documentation for the layout.

// RootsKey returns the set of root ids with a cached snapshot.
// Pattern: canopy:{ns}:roots
func RootsKey(namespace string) string {
	return fmt.Sprintf("canopy:%s:roots", namespace)
}

// RootKey returns the metadata hash of a cached snapshot.
// Pattern: canopy:{ns}:root:{root_id}
func RootKey(namespace string, rootID okr.ID) string {
	return fmt.Sprintf("canopy:%s:root:%s", namespace, rootID)
}

// ParentsKey returns the ordered list of parent ids with a bucket at level.
// Pattern: canopy:{ns}:tree:{root_id}:{level}:parents
func ParentsKey(namespace string, rootID okr.ID, level okr.Level) string {
	return fmt.Sprintf("canopy:%s:tree:%s:%s:parents", namespace, rootID, level)
}

// BucketKey returns the key holding one bucket as a JSON list.
// Pattern: canopy:{ns}:tree:{root_id}:{level}:bucket:{parent_id}
func BucketKey(namespace string, rootID okr.ID, level okr.Level, parentID okr.ID) string {
	return fmt.Sprintf("canopy:%s:tree:%s:%s:bucket:%s", namespace, rootID, level, parentID)
}

// TreeEventsChannel returns the Pub/Sub channel for tree events.
// Pattern: canopy:{ns}:tree_events
func TreeEventsChannel(namespace string) string {
	return fmt.Sprintf("canopy:%s:tree_events", namespace)
}

// bucketLevels are the levels stored as buckets, top-down.
var bucketLevels = []okr.Level{
	okr.LevelEpic,
	okr.LevelObjective,
	okr.LevelKeyResult,
	okr.LevelActivity,
	okr.LevelTask,
}
