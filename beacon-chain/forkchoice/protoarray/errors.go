package protoarray

import "errors"

var errUnknownJustifiedRoot = errors.New("unknown justified root")
var errInvalidJustifiedIndex = errors.New("justified index out of range")
var errUnknownFinalizedRoot = errors.New("unknown finalized root")
var errInvalidNodeIndex = errors.New("node index out of range")
var errInvalidNodeDelta = errors.New("node delta out of range")
var errInvalidParentDelta = errors.New("parent delta out of range")
var errInvalidDeltaLength = errors.New("delta length is different than node length")
var errDeltaOverflow = errors.New("delta to be subtracted is greater than node weight")
var errInvalidBestChildIndex = errors.New("best child index out of range")
var errInvalidBestDescendantIndex = errors.New("best descendant index out of range")
var errInvalidBestNode = errors.New("best node is not viable for head")
var errNilNode = errors.New("invalid nil or unknown node")
