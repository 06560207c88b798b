// Package ingest turns network telemetry into router records. Each source
// owns its connection and decoder; decoded records are handed to a sink that
// must not block.
package ingest

import (
	"errors"
	"fmt"
	"math"

	jsoniter "github.com/json-iterator/go"

	"instrumon/channel"
	"instrumon/router"
)

// ErrDecode marks a message that could not be turned into a record. Such
// messages are counted and dropped; they never reach the buffers.
var ErrDecode = errors.New("decode failure")

// Decoder parses the instrumentation wire format
//
//	{"data": {"P_RUN_TANK": 101325.0, ...}, ...}
//
// Other top-level keys are ignored. A value inside data that is not a JSON
// number decodes to NaN so the router can report the key as non-numeric. A
// Decoder reuses its iterator and is not safe for concurrent use.
type Decoder struct {
	iter *jsoniter.Iterator
}

// NewDecoder returns a decoder backed by a reusable json-iterator.
func NewDecoder() *Decoder {
	return &Decoder{iter: jsoniter.NewIterator(jsoniter.ConfigFastest)}
}

// Decode parses one message into a new record.
func (d *Decoder) Decode(data []byte) (router.Record, error) {
	it := d.iter.ResetBytes(data)
	it.Error = nil

	if it.WhatIsNext() != jsoniter.ObjectValue {
		return nil, fmt.Errorf("%w: message is not a JSON object", ErrDecode)
	}
	var rec router.Record
	var shapeErr error
	// "" is a legal key, so ReadObject's empty-string end marker cannot be used.
	it.ReadObjectCB(func(it *jsoniter.Iterator, field string) bool {
		if field != "data" || rec != nil {
			it.Skip()
			return true
		}
		if it.WhatIsNext() != jsoniter.ObjectValue {
			shapeErr = fmt.Errorf("%w: data is not an object", ErrDecode)
			return false
		}
		rec = make(router.Record, channel.Count)
		return it.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
			if it.WhatIsNext() == jsoniter.NumberValue {
				rec[key] = it.ReadFloat64()
				return true
			}
			it.Skip()
			rec[key] = math.NaN()
			return true
		})
	})
	if shapeErr != nil {
		return nil, shapeErr
	}
	if it.Error != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, it.Error)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: missing data object", ErrDecode)
	}
	return rec, nil
}
