package decision

import (
	"fmt"

	"github.com/Luigik28/rizzo-trading-agent/internal/pkg/jsonutil"
)

type ResponseKind int

const (
	KindText ResponseKind = iota
	KindStructured
)

func (k ResponseKind) String() string {
	if k == KindStructured {
		return "structured"
	}
	return "text"
}

// RawResponse 是提供方返回的原始结果：Structured(Draft) 或 Text(string)。
type RawResponse struct {
	Provider string
	Kind     ResponseKind
	Text     string
	Draft    Draft
}

func TextResponse(provider, text string) RawResponse {
	return RawResponse{Provider: provider, Kind: KindText, Text: text}
}

// StructuredResponse 保留原文便于落库与排查。
func StructuredResponse(provider, text string, d Draft) RawResponse {
	return RawResponse{Provider: provider, Kind: KindStructured, Text: text, Draft: d}
}

// Structured 将 Text 转为 Structured：去掉代码围栏并抽取 JSON 对象。
func (r RawResponse) Structured() (RawResponse, error) {
	if r.Kind == KindStructured {
		return r, nil
	}
	obj, ok := jsonutil.ExtractObject(r.Text)
	if !ok {
		return r, fmt.Errorf("%w: no json object in %s response", ErrMalformedResponse, r.Provider)
	}
	d, err := DecodeDraft(obj)
	if err != nil {
		return r, fmt.Errorf("%s: %w", r.Provider, err)
	}
	return StructuredResponse(r.Provider, r.Text, d), nil
}
