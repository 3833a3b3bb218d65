package registry

import "fmt"

const (
	keyRoomRegistry        = "global:room_registry"
	keyShortCodes          = "global:short_codes"
	keyRoomShortCodes      = "global:room_short_codes"
	keyShortCodeCounter    = "global:short_code_counter"
	keyUserRooms           = "global:user_rooms"
	keyOnlineUsers         = "global:online_users"
	keyDisconnectedIndex   = "global:disconnected_players_index"
	keyLeaderLock          = "leader:gameloop"
)

func indexRoomsKey(gameType string) string     { return fmt.Sprintf("index:rooms:%s", gameType) }
func indexActivityKey(gameType string) string  { return fmt.Sprintf("index:activity:%s", gameType) }
func indexTimeoutsKey(gameType string) string  { return fmt.Sprintf("index:timeouts:%s", gameType) }
func userConnectionsKey(userID string) string  { return fmt.Sprintf("global:user_connections:%s", userID) }
func disconnectedUserKey(userID string) string { return fmt.Sprintf("global:disconnected_players:%s", userID) }
func rateLimitKey(userID string) string        { return fmt.Sprintf("ratelimit:%s", userID) }
