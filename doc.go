/*
Package ordkv implements typed, ordered tables on top of a sorted byte store
(Bolt by default; LevelDB, Badger and an in-memory B-tree are also available).

We implement:

1. Table[K, V], a persistent map from K to V ordered by K.

2. MultiTable[K, V], mapping each K to an ordered sequence of V, for secondary
indices and append-only logs keyed by K.

3. RawTable, exposing the byte store directly.

4. Registry, recording the value layouts that tables write.

# Technical Details

**Key encoding.**
Keys are encoded so that bytewise order of the encodings matches the natural
order of the keys: integers are big-endian with the sign bit flipped, floats
use ordered IEEE bits, strings and byte slices are escaped and terminated,
and struct fields are concatenated in declaration order. Every encoding is
self-delimiting, so a key followed by more data still decodes.

**Comparator.**
Stores that accept a custom order (LevelDB, memory) get a comparator that
decodes both keys and compares them field by field. Its name includes the key
layout, so LevelDB refuses to open a store written with another key type.

**MultiTable records.**
Each value is its own record under the composite key (K, index), encoded as
the key followed by a big-endian uint32. Inserting probes the last record at
or before (K, MaxIndex) and assigns one more than its index; index MaxIndex is
reserved and reaching it fails with ErrOverflow.

## Binary encoding

**Value**: flags (uvarint), layout hash (8 bytes), then the msgpack (or JSON)
body, optionally compressed with snappy. The layout hash identifies the value
type's Descriptor; with Options.StrictLayout values written under another
layout fail to decode.

**Undecodable records** are skipped by scans and reported as absent by
lookups, and logged at debug level.
*/
package ordkv
