package store

import (
	badger "github.com/dgraph-io/badger/v2"
	"github.com/vmihailenco/msgpack/v4"
)

// setValue msgpack encodes v under key
func setValue(txn *badger.Txn, key string, v interface{}) error {
	bytez, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), bytez)
}

// getValue decodes key into out, returns false when the key was never
// written, out is left untouched
func getValue(txn *badger.Txn, key string, out interface{}) (bool, error) {
	item, err := txn.Get([]byte(key))
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	err = item.Value(func(val []byte) error {
		return msgpack.Unmarshal(val, out)
	})
	return err == nil, err
}

// deleteKey removes key, missing keys are not an error
func deleteKey(txn *badger.Txn, key string) error {
	err := txn.Delete([]byte(key))
	if err == badger.ErrKeyNotFound {
		return nil
	}
	return err
}
