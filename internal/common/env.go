package common

import (
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// env resolves keys against the process environment at lookup time.
var env = newEnv()

func newEnv() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	return v
}

// GetenvOrDefault returns the value of the environment variable or a default value.
func GetenvOrDefault(key string, defaultValue string) string {
	if !env.IsSet(key) {
		return defaultValue
	}
	return env.GetString(key)
}

// GetIntOrDefault returns the integer value of the environment variable or a default value.
func GetIntOrDefault(key string, defaultValue int) int {
	if !env.IsSet(key) {
		return defaultValue
	}
	intVal, err := cast.ToIntE(env.Get(key))
	if err != nil {
		return defaultValue
	}
	return intVal
}

