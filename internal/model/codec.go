package model

import (
	"encoding/json"
	"fmt"
)

type encodedFact struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type encodedContainer struct {
	Facts []encodedFact `json:"facts"`
}

var decoders = map[Kind]func(json.RawMessage) (Fact, error){
	KindGradleProject:      decodeAs[GradleProject],
	KindApplicationProject: decodeAs[ApplicationProject],
	KindNativeProject:      decodeAs[NativeProject],
	KindNativeVariantAbi:   decodeAs[NativeVariantAbi],
	KindJavaProject:        decodeAs[JavaProject],
	KindArtifactModel:      decodeAs[ArtifactModel],
	KindModuleIdentity:     decodeAs[ModuleIdentity],
	KindApplicationModule:  decodeAs[ApplicationModule],
	KindNativeModule:       decodeAs[NativeModule],
	KindPlainModule:        decodeAs[PlainModule],
	KindGlobalLibraryMap:   decodeAs[GlobalLibraryMap],
	KindBuildRoots:         decodeAs[BuildRoots],
}

func decodeAs[T Fact](raw json.RawMessage) (Fact, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// EncodeContainer serializes every fact of c.
func EncodeContainer(c *Container) ([]byte, error) {
	enc := encodedContainer{Facts: make([]encodedFact, 0, c.Len())}
	for _, f := range c.All() {
		data, err := json.Marshal(f)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", f.FactKind(), err)
		}
		enc.Facts = append(enc.Facts, encodedFact{Kind: f.FactKind(), Data: data})
	}
	return json.Marshal(enc)
}

// DecodeContainer is the inverse of EncodeContainer. An unknown kind is an
// error: the data was written by an incompatible format.
func DecodeContainer(data []byte) (*Container, error) {
	var enc encodedContainer
	if err := json.Unmarshal(data, &enc); err != nil {
		return nil, fmt.Errorf("decode container: %w", err)
	}
	c := NewContainer()
	for _, ef := range enc.Facts {
		decode, ok := decoders[ef.Kind]
		if !ok {
			return nil, fmt.Errorf("unknown fact kind %q", ef.Kind)
		}
		f, err := decode(ef.Data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", ef.Kind, err)
		}
		c.Add(f)
	}
	return c, nil
}
