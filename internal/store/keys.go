package store

import "fmt"

// Key layout follows The `{roomId}` hash tag keeps a room's three
// keys colocated on the same Redis Cluster slot so pipelined multi-key
// operations never cross shards.
func stateKey(gameType, roomID string) string {
	return fmt.Sprintf("game:%s:{%s}:state", gameType, roomID)
}

func metaKey(gameType, roomID string) string {
	return fmt.Sprintf("game:%s:{%s}:meta", gameType, roomID)
}

func lockKey(gameType, roomID string) string {
	return fmt.Sprintf("game:%s:{%s}:lock", gameType, roomID)
}
