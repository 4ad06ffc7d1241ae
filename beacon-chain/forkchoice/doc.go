// Package forkchoice defines the interfaces of the beacon chain fork choice
// implementations. The implementations track candidate block nodes, account
// validator votes as weights on those nodes and resolve the canonical head.
package forkchoice
