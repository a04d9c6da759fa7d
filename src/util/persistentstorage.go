package util

import (
	"encoding/json"
	"os"
	"sync"
)

// PersistentStorage keeps a JSON-encoded value synced to a file. Writes go
// through a temporary file so a crash mid-write never corrupts the stored
// value.
type PersistentStorage struct {
	value    interface{}
	file     string
	fileLock sync.Mutex
}

// NewPersistentStorage loads the stored value into typeValue, or writes
// typeValue as the initial content when the file does not exist yet.
func NewPersistentStorage(filename string, typeValue interface{}) (*PersistentStorage, error) {
	store := &PersistentStorage{
		file:  filename,
		value: typeValue,
	}

	ok, err := store.readValue()
	if err != nil {
		return nil, err
	}

	if !ok {
		if err := store.SetValue(typeValue); err != nil {
			return nil, err
		}
	}

	return store, nil
}

func (store *PersistentStorage) Value() interface{} {
	return store.value
}

func (store *PersistentStorage) SetValue(value interface{}) error {
	store.fileLock.Lock()
	defer store.fileLock.Unlock()

	store.value = value
	return store.writeLocked()
}

// Update applies fn to the current value and persists the result.
func (store *PersistentStorage) Update(fn func(value interface{})) error {
	store.fileLock.Lock()
	defer store.fileLock.Unlock()

	fn(store.value)
	return store.writeLocked()
}

func (store *PersistentStorage) writeLocked() error {
	tmp := store.file + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(file).Encode(store.value); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, store.file)
}

func (store *PersistentStorage) readValue() (bool, error) {
	store.fileLock.Lock()
	defer store.fileLock.Unlock()

	file, err := os.Open(store.file)
	if os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(store.value); err != nil {
		return false, err
	}
	return true, nil
}
