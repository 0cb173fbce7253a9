package domain

// 废旧件回收代码的合法区间：P01 ~ P21。
const (
	wasteCodeMin = 1
	wasteCodeMax = 21
)

// IsValidWasteCode 校验两位数字回收代码。
// 两个尾字节必须都是 ASCII 数字："P+5"、"P-1" 这类带符号写法不合法。
func IsValidWasteCode(code string) bool {
	if len(code) != 3 || code[0] != 'P' {
		return false
	}
	if code[1] < '0' || code[1] > '9' || code[2] < '0' || code[2] > '9' {
		return false
	}
	n := int(code[1]-'0')*10 + int(code[2]-'0')
	return n >= wasteCodeMin && n <= wasteCodeMax
}
