package storefakes

import (
	"sync"

	"github.com/gradcert/console-client/credstore"
)

var _ credstore.Store = (*FakeStore)(nil)

// FakeStore is an in-memory credstore.Store with call counters for tests.
type FakeStore struct {
	lock   sync.Mutex
	record *credstore.Record

	SetCalls          int
	RemoveCalls       int
	UpdateTokensCalls int
}

func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

func (fs *FakeStore) Set(record credstore.Record) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.SetCalls++
	fs.record = &record
}

func (fs *FakeStore) Get() *credstore.Record {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if fs.record == nil {
		return nil
	}
	copied := *fs.record
	return &copied
}

func (fs *FakeStore) Remove() {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.RemoveCalls++
	fs.record = nil
}

func (fs *FakeStore) UpdateTokens(access, refresh string) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.UpdateTokensCalls++
	if fs.record == nil {
		return
	}
	fs.record.AccessToken = access
	fs.record.RefreshToken = refresh
}

func (fs *FakeStore) UpdateUser(user credstore.User) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if fs.record == nil {
		return
	}
	fs.record.User = user
}

func (fs *FakeStore) AccessToken() string {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if fs.record == nil {
		return ""
	}
	return fs.record.AccessToken
}

func (fs *FakeStore) RefreshToken() string {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if fs.record == nil {
		return ""
	}
	return fs.record.RefreshToken
}
