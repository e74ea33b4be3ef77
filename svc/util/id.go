package util

import (
	"crypto/rand"

	"github.com/pkg/errors"
)

const (
	idChars  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	idLength = 8
)

// GenID draws a fixed-length base62 identifier from crypto/rand. The id carries
// no time or sequence component. exists probes the live table; a collision
// retries with a fresh draw, and exhausting retries signals an entropy or
// capacity fault.
func GenID(exists func(string) (bool, error)) (string, error) {
	for retry := 0; retry < 5; retry++ {
		id, err := randomID()
		if err != nil {
			return "", err
		}
		exist, err := exists(id)
		if err != nil {
			return "", err
		}
		if !exist {
			return id, nil
		}
	}
	return "", errors.New("id collision after 5 retries")
}

// randomID uses rejection sampling so every character is uniform over the
// 62-symbol alphabet.
func randomID() (string, error) {
	out := make([]byte, 0, idLength)
	buf := make([]byte, 16)
	for len(out) < idLength {
		if _, err := rand.Read(buf); err != nil {
			return "", errors.Wrap(err, "rand fail")
		}
		for _, b := range buf {
			// 248 = 62*4, the largest multiple of 62 below 256.
			if b >= 248 {
				continue
			}
			out = append(out, idChars[b%62])
			if len(out) == idLength {
				break
			}
		}
	}
	return string(out), nil
}
