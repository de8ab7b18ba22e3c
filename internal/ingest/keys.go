package ingest

import (
	"crypto/rand"
	"fmt"
	"io"
	mathrand "math/rand/v2"
	"regexp"
	"strings"
	"time"
)

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

var (
	disallowedKeyChars = regexp.MustCompile(`[^A-Za-z0-9.-]`)
	underscoreRuns     = regexp.MustCompile(`_{2,}`)
)

// KeyDeriver 根据原始文件名生成存储 key：{毫秒时间戳}_{6 位 base36 随机串}_{清洗后的文件名}。
type KeyDeriver struct {
	now    func() time.Time
	random io.Reader
}

func NewKeyDeriver() *KeyDeriver {
	return &KeyDeriver{now: time.Now, random: rand.Reader}
}

// Derive 生成存储 key。清洗后文件名为空时前缀仍保证 key 非空。
func (d *KeyDeriver) Derive(name string) string {
	return fmt.Sprintf("%d_%s_%s", d.now().UnixMilli(), d.randomID(6), SanitizeName(name))
}

// SanitizeName 将 [A-Za-z0-9.-] 以外的字符替换为下划线，合并连续下划线并去掉首尾下划线。
func SanitizeName(name string) string {
	cleaned := disallowedKeyChars.ReplaceAllString(name, "_")
	cleaned = underscoreRuns.ReplaceAllString(cleaned, "_")
	return strings.Trim(cleaned, "_")
}

func (d *KeyDeriver) randomID(n int) string {
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := io.ReadFull(d.random, buf); err != nil {
			for len(out) < n {
				out = append(out, base36Alphabet[mathrand.IntN(len(base36Alphabet))])
			}
			break
		}
		for _, b := range buf {
			// 252 = 36*7，丢弃高位避免取模偏差
			if b >= 252 || len(out) == n {
				continue
			}
			out = append(out, base36Alphabet[int(b)%36])
		}
	}
	return string(out)
}
