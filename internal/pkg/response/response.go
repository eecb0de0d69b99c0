package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"
)

type codeErr struct {
	code uint32
	msg  string
}

func (e codeErr) Error() string {
	return e.msg
}

func (e codeErr) Code() uint32 {
	return e.code
}

func AsCodeErr(code uint32, msg string) error {
	return codeErr{code: code, msg: msg}
}

type envelope struct {
	Code    uint32      `json:"code"`
	Message string      `json:"msg"`
	Data    interface{} `json:"data"`
}

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

// Created and Accepted keep the success envelope but report the
// resource-creation status codes.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, envelope{Data: data})
}

func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, envelope{Data: data})
}

func Error(c *gin.Context, status int, code int, message string) {
	proxyutil.FailJson(c, status, AsCodeErr(uint32(code), message))
}
