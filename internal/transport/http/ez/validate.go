package ez

import (
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	registerOnce sync.Once
	// +2519xxxxxxxx / 09xxxxxxxx / 07xxxxxxxx
	ethPhone = regexp.MustCompile(`^(\+?251|0)[79]\d{8}$`)
)

// RegisterValidators 向 gin 的校验引擎注册自定义 tag，重复调用无副作用
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("ethphone", func(fl validator.FieldLevel) bool {
			return ethPhone.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("future", func(fl validator.FieldLevel) bool {
			t, ok := fl.Field().Interface().(time.Time)
			return ok && t.After(time.Now())
		})
	})
}

// ValidPhone 供非 binding 场景复用
func ValidPhone(s string) bool { return ethPhone.MatchString(s) }
