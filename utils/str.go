package utils

import (
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// 解析分隔的浮点数串，遇到非法值返回错误
func StrToFloats(s, sep string) (rets []float64, err error) {
	var f float64
	for _, v := range strings.Split(s, sep) {
		if v = strings.TrimSpace(v); v == "" {
			continue
		}
		if f, err = strconv.ParseFloat(v, 64); err != nil {
			return
		}
		rets = append(rets, f)
	}
	return
}

func GetNowTimeTag() string {
	const tf = "20060102150405.000"
	t := time.Now().Format(tf)
	return t[:len(tf)-4] + t[len(tf)-3:]
}

// GBK串转UTF-8（中文系统打包的zip文件名多为GBK）
func GbkStrToUtf8(s string) (d string, e error) {
	reader := transform.NewReader(strings.NewReader(s), simplifiedchinese.GBK.NewDecoder())
	t, e := io.ReadAll(reader)
	if e != nil {
		return
	}
	d = string(t)
	return
}
