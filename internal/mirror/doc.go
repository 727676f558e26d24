// Package mirror persists tree snapshots in Redis and carries tree events
// over Redis Pub/Sub.
//
// # Layout
//
// All keys and channels are namespaced so several canopy deployments can
// share one Redis server:
//
//	canopy:{ns}:roots                                set of cached root ids
//	canopy:{ns}:root:{root}                          hash: root metadata
//	canopy:{ns}:tree:{root}:{level}:parents          list: parent ids in order
//	canopy:{ns}:tree:{root}:{level}:bucket:{parent}  string: JSON list of children
//	canopy:{ns}:tree_events                          Pub/Sub channel
//
// Each bucket is stored whole, in order, so a cached snapshot renders exactly
// like the live one it was taken from. A parent whose fetch was degraded has
// no bucket and is absent from the parents list.
//
// # Usage
//
//	client, err := mirror.NewClientFromURL("redis://localhost:6379", "default")
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	engine := tree.NewEngine(api, userID, tree.WithPublisher(client))
//	snap, err := engine.Load(ctx, rootID, okr.KindMission)
//	...
//	err = client.SaveSnapshot(ctx, snap)
package mirror
