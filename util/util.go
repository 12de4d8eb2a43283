package util

import (
	"strconv"
	"strings"

	"MisakaKV/logger"
)

// EncodeRecord 将 key 和 value 用分隔符拼成一行 key 中不能出现分隔符 两者都不能出现换行
func EncodeRecord(key string, value string, delimiter string) (string, error) {
	if delimiter == "" || strings.ContainsAny(delimiter, "\r\n") {
		return "", logger.DelimiterIsIllegal
	}
	if strings.Contains(key, delimiter) || strings.ContainsAny(key, "\r\n") || strings.ContainsAny(value, "\r\n") {
		logger.GenerateErrorLog(false, false, logger.RecordIsIllegal.Error(), key)
		return "", logger.RecordIsIllegal
	}
	return key + delimiter + value, nil
}

// DecodeRecord 将由 EncodeRecord 生成的一行按第一个分隔符拆分为 key 和 value
func DecodeRecord(line string, delimiter string) (key string, value string, e error) {
	if delimiter == "" {
		return "", "", logger.DelimiterIsIllegal
	}
	index := strings.Index(line, delimiter)
	if line == "" || index < 0 {
		logger.GenerateErrorLog(false, false, logger.RecordIsIllegal.Error(), TurnByteArrayToString([]byte(line)))
		return "", "", logger.RecordIsIllegal
	}
	return line[:index], line[index+len(delimiter):], nil
}

// TurnByteArrayToString 将byte数组转换为string 更好的判断问题所在
func TurnByteArrayToString(input []byte) string {
	result := ""
	for _, v := range input {
		result += strconv.Itoa(int(v)) + " "
	}
	return result
}
