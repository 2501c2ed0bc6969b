package operation

import (
	"encoding/binary"
	"fmt"

	"github.com/onflow/hotshot/consensus/hotshot/model"
)

const (

	// codes for special database markers
	codeDBVersion = 1 // version of the on-disk layout

	// codes for the single values of a replica
	codeHighQC                    = 10
	codeNextEpochHighQC           = 11
	codeAnchorLeaf                = 12
	codeDecidedUpgradeCertificate = 13
	codeStateCert                 = 14

	// codes for values indexed by view
	codeProposal = 20
	codeVidShare = 21
	codeDaCert   = 22

	// codes for values indexed by epoch
	codeDrbResult = 30
	codeEpochRoot = 31
)

func makePrefix(code byte, keys ...interface{}) []byte {
	prefix := make([]byte, 1)
	prefix[0] = code
	for _, key := range keys {
		prefix = append(prefix, b(key)...)
	}
	return prefix
}

func b(v interface{}) []byte {
	switch i := v.(type) {
	case uint8:
		return []byte{i}
	case uint32:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, i)
		return b
	case uint64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, i)
		return b
	case string:
		return []byte(i)
	case []byte:
		return i
	case model.View:
		return b(uint64(i))
	case model.Epoch:
		return b(uint64(i))
	case model.Commitment:
		return i[:]
	default:
		panic(fmt.Sprintf("unsupported type to convert (%T)", v))
	}
}

// viewFromKey reads the view following the one byte code of a key.
func viewFromKey(key []byte) model.View {
	return model.View(binary.BigEndian.Uint64(key[1:9]))
}

// epochFromKey reads the epoch following the one byte code of a key.
func epochFromKey(key []byte) model.Epoch {
	return model.Epoch(binary.BigEndian.Uint64(key[1:9]))
}
