package model

import (
	"fmt"
	"regexp"

	log "github.com/sirupsen/logrus"
)

const (
	ErrorParams       = 100010
	ErrorEmptyId      = 100011
	ErrorNewRepo      = 100012
	ErrorDB           = 100015
	ErrorUnauthorized = 100016
	ErrorForbidden    = 100017
	ErrorNotFound     = 100018
	ErrorLLM          = 100019
	ErrorCheckpoint   = 100020
	ErrorBusy         = 100021
)

var ErrorMessages = map[int]string{
	ErrorParams:       "参数错误",
	ErrorEmptyId:      "id 为空",
	ErrorNewRepo:      "新建 repo 失败",
	ErrorDB:           "db error",
	ErrorUnauthorized: "未登录",
	ErrorForbidden:    "无权访问该会话",
	ErrorNotFound:     "记录不存在",
	ErrorLLM:          "模型调用失败",
	ErrorCheckpoint:   "会话状态读写失败",
	ErrorBusy:         "该会话有正在处理的消息",
}

type Error struct {
	Code       int    `json:"code"`
	Message    string `json:"message"`
	InnerError error  `json:"inner_error"`
}

func (err Error) Error() string {
	return err.Message
}

func (err Error) String() string {
	return err.InnerError.Error()
}

func NewError(code int, innerError error) *Error {
	if innerError != nil {
		var re = regexp.MustCompile(`[\n\t]+`)
		innerErrorString := re.ReplaceAllString(fmt.Sprintf("%+v", innerError), " ")
		log.Errorf("NewError code:%d, message:%s, innerError:%+v\n", code, ErrorMessages[code], innerErrorString)
	}
	return &Error{
		Code:       code,
		Message:    ErrorMessages[code],
		InnerError: nil,
	}
}

func NewErrorWithMessage(code int, message string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		InnerError: nil,
	}
}
