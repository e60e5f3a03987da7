package genai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseAdVariants 从协作方的文本响应中提取并归一化 variants 数组。
// 模型偶尔会在 JSON 外包一段说明或 markdown 代码块，这里取第一个
// '{' 到最后一个 '}' 之间的内容再解码。解码成功后内部只使用 AdVariant。
func ParseAdVariants(responseText string) ([]AdVariant, error) {
	start := strings.Index(responseText, "{")
	end := strings.LastIndex(responseText, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("parse text response: no JSON object found")
	}

	var decoded struct {
		Variants []AdVariant `json:"variants"`
	}
	if err := json.Unmarshal([]byte(responseText[start:end+1]), &decoded); err != nil {
		return nil, fmt.Errorf("parse text response: %w", err)
	}
	if len(decoded.Variants) == 0 {
		return nil, fmt.Errorf("parse text response: variants array empty")
	}

	for i := range decoded.Variants {
		if strings.TrimSpace(decoded.Variants[i].VariantID) == "" {
			decoded.Variants[i].VariantID = fmt.Sprintf("variant_%d", i+1)
		}
	}
	return decoded.Variants, nil
}
