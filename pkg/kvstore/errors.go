package kvstore

import "errors"

var (
	ErrKeyNotFound = errors.New("key not found")
	ErrKeyEmpty    = errors.New("key is empty")
	ErrPrefixEmpty = errors.New("prefix is empty")
)

func joinKey(folder, k string) (string, error) {
	if k == "" {
		return "", ErrKeyEmpty
	}
	if folder != "" {
		return folder + "/" + k, nil
	}
	return k, nil
}
