package ports

import "errors"

// engine 與 hub 之間只透過這些 sentinel 錯誤溝通，讓呼叫端可以用
// errors.Is 判斷，不必比對字串。
var (
	// 動作類：直接回傳給操作者
	ErrNotInRoom     = errors.New("not in room")
	ErrNotYourTurn   = errors.New("not your turn")
	ErrRoomFull      = errors.New("room is full")
	ErrRoomNotFound  = errors.New("room not found")
	ErrUnknownAction = errors.New("unknown action")
	ErrIllegalMove   = errors.New("illegal move")

	// 經濟類：回傳給操作者，重試與否由呼叫端決定
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrDuplicateTx        = errors.New("duplicate transaction")
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// 基礎設施類
	ErrSystemOverloaded          = errors.New("system overloaded")
	ErrStateCorruptedOrIncompatible = errors.New("state corrupted or incompatible")
	ErrLockContention            = errors.New("lock contention")
	ErrThunkPanicked             = errors.New("dispatch: thunk panicked")

	// 其他
	ErrAlreadySeated = errors.New("user already seated")
	ErrRoomShutdown  = errors.New("shutting down")
)
