// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package cache keeps computed resolutions keyed by the content hash of
// their inputs.
package cache

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"slices"

	lru "github.com/hashicorp/golang-lru"
	"github.com/zeebo/blake3"

	"github.com/danielhkuo/govpoll/victory"
)

// DefaultSize is the number of resolutions kept when no size is configured.
const DefaultSize = 256

// Resolutions is a fixed-size LRU of resolutions. Cached values share their
// weight pointers with every reader and must be treated as read-only.
type Resolutions struct {
	lru *lru.Cache
}

func New(size int) (*Resolutions, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolution cache: %w", err)
	}
	return &Resolutions{lru: c}, nil
}

func (r *Resolutions) Get(key string) (victory.Resolution, bool) {
	v, ok := r.lru.Get(key)
	if !ok {
		return victory.Resolution{}, false
	}
	return v.(victory.Resolution), true
}

func (r *Resolutions) Add(key string, res victory.Resolution) {
	r.lru.Add(key, res)
}

func (r *Resolutions) Len() int {
	return r.lru.Len()
}

// Key hashes everything that can change a resolution: the poll id, input
// format, declared conditions, option ids and every ballot in order.
// Labels are left out since they never affect the outcome.
func Key(p victory.Poll, ballots []victory.Ballot) string {
	h := blake3.New()

	writeString(h, p.ID)
	writeString(h, string(p.InputFormat))

	conditions := make([]string, len(p.Conditions))
	for i, c := range p.Conditions {
		conditions[i] = string(c)
	}
	slices.Sort(conditions)
	writeInt(h, len(conditions))
	for _, c := range conditions {
		writeString(h, c)
	}

	writeInt(h, len(p.Options))
	for _, o := range p.Options {
		writeInt(h, o.ID)
	}

	writeInt(h, len(ballots))
	for _, b := range ballots {
		writeString(h, b.Voter)
		if b.Weight != nil {
			w := b.Weight.Bytes32()
			h.Write(w[:])
		} else {
			h.Write(make([]byte, 32))
		}
		if b.Abstain {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
		writeInt(h, len(b.Choices))
		for _, id := range b.Choices {
			writeInt(h, id)
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}

func writeString(h hash.Hash, s string) {
	writeInt(h, len(s))
	h.Write([]byte(s))
}

func writeInt(h hash.Hash, n int) {
	var buf [binary.MaxVarintLen64]byte
	h.Write(buf[:binary.PutVarint(buf[:], int64(n))])
}
