//go:build sonic

package manifest

import (
	"github.com/bytedance/sonic"
)

var jsonMarshal = sonic.ConfigStd.Marshal
var jsonMarshalIndent = sonic.ConfigStd.MarshalIndent
var jsonUnmarshal = sonic.ConfigStd.Unmarshal
