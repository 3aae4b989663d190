package ordkv

import (
	"bytes"
	"math"
	"reflect"
	"sort"
	"testing"
	"time"
)

type orderKey struct {
	Region string
	Day    int32
	Flag   bool
	Score  float64
	ID     [4]byte
	Blob   []byte
}

type namedInt int16

func roundtrip[K any](t *testing.T, k K) []byte {
	t.Helper()
	codec := NewKeyCodec[K]()
	data := codec.Append(nil, k)
	got, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("Decode(%x) of %v failed: %v", data, k, err)
	}
	if !reflect.DeepEqual(got, k) {
		t.Errorf("** roundtrip of %v: got %v", k, got)
	}
	return data
}

func TestKeyCodec_Roundtrip(t *testing.T) {
	roundtrip(t, true)
	roundtrip(t, false)
	roundtrip(t, uint8(200))
	roundtrip(t, uint16(65535))
	roundtrip(t, uint64(math.MaxUint64))
	roundtrip(t, int8(-128))
	roundtrip(t, int32(-7))
	roundtrip(t, int64(math.MinInt64))
	roundtrip(t, int(42))
	roundtrip(t, namedInt(-3))
	roundtrip(t, float32(-1.25))
	roundtrip(t, math.Inf(-1))
	roundtrip(t, 3.5)
	roundtrip(t, "")
	roundtrip(t, "a\x00b\x00")
	roundtrip(t, []byte{0, 0, 1, 0xFF})
	roundtrip(t, [3]byte{1, 2, 3})
	roundtrip(t, time.Date(2024, 3, 1, 12, 0, 0, 5, time.UTC))
	roundtrip(t, time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC))
	roundtrip(t, time.Time{})
	roundtrip(t, time.Date(3000, 6, 1, 0, 0, 0, 999999999, time.UTC))
	roundtrip(t, time.Date(1500, 1, 1, 0, 0, 0, 1, time.UTC))
	roundtrip(t, orderKey{"eu", -3, true, -0.5, [4]byte{9, 8, 7, 6}, []byte("x\x00")})
	roundtrip(t, compositeKey[string]{"k", 17})
}

func TestKeyCodec_Encodings(t *testing.T) {
	deepEqual(t, NewKeyCodec[int32]().Append(nil, -1), x("7fffffff"))
	deepEqual(t, NewKeyCodec[int32]().Append(nil, 1), x("80000001"))
	deepEqual(t, NewKeyCodec[uint16]().Append(nil, 0x1234), x("1234"))
	deepEqual(t, NewKeyCodec[string]().Append(nil, "a\x00"), x("61 00ff 0001"))
	deepEqual(t, NewKeyCodec[compositeKey[string]]().Append(nil, compositeKey[string]{"ab", 7}), x("6162 0001 00000007"))
	deepEqual(t, NewKeyCodec[float64]().Append(nil, math.Copysign(0, -1)), NewKeyCodec[float64]().Append(nil, 0))
	deepEqual(t, NewKeyCodec[float64]().Append(nil, math.NaN()), x("0000000000000000"))
	deepEqual(t, NewKeyCodec[time.Time]().Append(nil, time.Unix(-1, 5)), x("7fffffffffffffff 00000005"))
}

func TestKeyCodec_DecodeErrors(t *testing.T) {
	codec := NewKeyCodec[compositeKey[string]]()
	for _, data := range [][]byte{
		nil,
		x("61"),
		x("61 0002"),
		x("61 0001 0000"),
		x("61 0001 00000001 ff"),
	} {
		_, err := codec.Decode(data)
		if !IsDecodeError(err) {
			t.Errorf("Decode(%x) = %v, wanted a decode error", data, err)
		}
	}
	if _, err := NewKeyCodec[time.Time]().Decode(x("8000000000000000 3b9aca00")); !IsDecodeError(err) {
		t.Errorf("Decode of 1e9 nanoseconds = %v, wanted a decode error", err)
	}
	if _, err := NewKeyCodec[bool]().Decode(x("02")); !IsDecodeError(err) {
		t.Errorf("Decode(02) as bool = %v, wanted a decode error", err)
	}
}

func TestKeyCodec_RejectsUnsupportedTypes(t *testing.T) {
	type hidden struct {
		A int
		b int
	}
	for name, f := range map[string]func(){
		"unexported field": func() { NewKeyCodec[hidden]() },
		"pointer":          func() { NewKeyCodec[*int]() },
		"map":              func() { NewKeyCodec[map[string]int]() },
		"int slice":        func() { NewKeyCodec[[]int]() },
	} {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("NewKeyCodec did not panic")
				}
			}()
			f()
		})
	}
}

func checkOrder[K any](t *testing.T, sorted []K) {
	t.Helper()
	codec := NewKeyCodec[K]()
	cmp := codec.Comparator()
	for i := 0; i+1 < len(sorted); i++ {
		a, b := codec.Append(nil, sorted[i]), codec.Append(nil, sorted[i+1])
		if bytes.Compare(a, b) >= 0 {
			t.Errorf("enc(%v) = %x is not below enc(%v) = %x", sorted[i], a, sorted[i+1], b)
		}
		if cmp.Compare(a, b) >= 0 || cmp.Compare(b, a) <= 0 {
			t.Errorf("Compare does not order %v before %v", sorted[i], sorted[i+1])
		}
		if codec.Compare(sorted[i], sorted[i+1]) >= 0 {
			t.Errorf("KeyCodec.Compare does not order %v before %v", sorted[i], sorted[i+1])
		}
	}
}

func TestKeyCodec_OrderPreserving(t *testing.T) {
	checkOrder(t, []int64{math.MinInt64, -1 << 40, -5, -1, 0, 1, 1 << 40, math.MaxInt64})
	checkOrder(t, []int8{-128, -1, 0, 127})
	checkOrder(t, []uint32{0, 1, 255, 256, math.MaxUint32})
	checkOrder(t, []float64{math.NaN(), math.Inf(-1), -1e300, -2.5, -1e-300, 0, 1e-300, 3, math.Inf(1)})
	checkOrder(t, []float32{float32(math.Inf(-1)), -1, 0, 0.5, float32(math.Inf(1))})
	checkOrder(t, []string{"", "\x00", "\x00\x00", "\x00\x01", "a", "a\x00", "a\x00b", "ab", "b", "\xff"})
	checkOrder(t, [][]byte{{}, {0}, {0, 0xFF}, {1}})
	checkOrder(t, []bool{false, true})
	checkOrder(t, []time.Time{
		{},
		time.Date(1, 1, 1, 0, 0, 0, 1, time.UTC),
		time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(1970, 1, 1, 0, 0, 0, 1, time.UTC),
		time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(3000, 1, 1, 0, 0, 0, 1, time.UTC),
	})
	checkOrder(t, []orderKey{
		{Region: "", Day: 5},
		{Region: "eu", Day: -10},
		{Region: "eu", Day: -10, Flag: true},
		{Region: "eu", Day: 3, Score: -1},
		{Region: "eu", Day: 3, Score: 2},
		{Region: "eu", Day: 3, Score: 2, ID: [4]byte{0, 0, 0, 1}},
		{Region: "eu", Day: 3, Score: 2, ID: [4]byte{0, 0, 0, 1}, Blob: []byte{0}},
		{Region: "eu\x00", Day: -100},
		{Region: "us"},
	})
}

// Encoded composite keys sort like (K, I) pairs compared lexicographically.
func TestKeyCodec_CompositeKeyOrder(t *testing.T) {
	codec := NewKeyCodec[compositeKey[string]]()
	cmp := codec.Comparator()
	var keys []compositeKey[string]
	for _, k := range []string{"", "a", "a\x00", "ab", "b"} {
		for _, i := range []uint32{0, 1, 255, 256, MaxIndex - 1, MaxIndex} {
			keys = append(keys, compositeKey[string]{k, i})
		}
	}
	for _, a := range keys {
		for _, b := range keys {
			want := 0
			switch {
			case a.Key < b.Key:
				want = -1
			case a.Key > b.Key:
				want = 1
			case a.Index < b.Index:
				want = -1
			case a.Index > b.Index:
				want = 1
			}
			ea, eb := codec.Append(nil, a), codec.Append(nil, b)
			if got := cmp.Compare(ea, eb); got != want {
				t.Errorf("Compare(%v, %v) = %d, wanted %d", a, b, got, want)
			}
			if got := bytes.Compare(ea, eb); got != want {
				t.Errorf("bytes.Compare(enc(%v), enc(%v)) = %d, wanted %d", a, b, got, want)
			}
		}
	}
}

func TestComparator_FallsBackToBytes(t *testing.T) {
	cmp := ComparatorFor[int32]()
	deepEqual(t, cmp.Compare(x("01"), x("80000000")), -1)
	deepEqual(t, cmp.Compare(x("ff"), x("80000000")), 1)
	deepEqual(t, cmp.Compare(x("ff"), x("ff")), 0)

	keys := [][]byte{x("80000005"), x("ff"), x("7fffffff"), x("00")}
	sort.Slice(keys, func(i, j int) bool { return cmp.Compare(keys[i], keys[j]) < 0 })
	deepEqual(t, keys, [][]byte{x("00"), x("7fffffff"), x("80000005"), x("ff")})
}

func TestComparator_Name(t *testing.T) {
	deepEqual(t, ComparatorFor[compositeKey[string]]().Name(), "ordkv.key/{Key:str,Index:u32}")
	if ComparatorFor[int64]().Name() == ComparatorFor[uint64]().Name() {
		t.Errorf("int64 and uint64 comparators share a name")
	}
}
