// Package sync はカレンダーフィードとTodoの同期エンジンを提供する。
// リコンサイラ（差分適用）、フィード単位の排他制御、スケジューラを含む。
package sync

import stdsync "sync"

// keyedMutex はキー単位の排他ロックを提供する。
// 定期同期とオンデマンド同期が同一フィードで競合した場合、
// 後から来た側は先行する同期の完了を待つ。
// 参照カウントで未使用エントリを回収するため、フィード数に比例して
// ロックマップが際限なく膨らむことはない。
type keyedMutex struct {
	mu    stdsync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   stdsync.Mutex
	refs int
}

// newKeyedMutex はkeyedMutexを生成する。
func newKeyedMutex() *keyedMutex {
	return &keyedMutex{
		locks: make(map[string]*keyedLock),
	}
}

// Lock は指定キーのロックを取得し、解放用の関数を返す。
// 同一キーのロックが取得済みの場合は解放されるまでブロックする。
func (km *keyedMutex) Lock(key string) (unlock func()) {
	km.mu.Lock()
	l, ok := km.locks[key]
	if !ok {
		l = &keyedLock{}
		km.locks[key] = l
	}
	l.refs++
	km.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		km.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(km.locks, key)
		}
		km.mu.Unlock()
	}
}
