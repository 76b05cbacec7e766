package env

import (
	"log"
	"strconv"

	z "github.com/Oudwins/zog"
	"github.com/Oudwins/zog/zenv"
)

type EnvStruct struct {
	BASE_URL   string `zog:"TASKWATCH_BASE_URL"`
	PORT       int    `zog:"TASKWATCH_PORT"`
	DATA_DIR   string `zog:"TASKWATCH_DATA_DIR"`
	SUBREDDIT  string `zog:"TASKWATCH_SUBREDDIT"`
	STUB_ADDR  string
	STUB_URL   string
}

var env *EnvStruct

var EnvSchema = z.Struct(z.Shape{
	"BASE_URL":  z.String().Optional(),
	"PORT":      z.Int().Default(57321),
	"DATA_DIR":  z.String().Optional(),
	"SUBREDDIT": z.String().Default("golang"),
})

func Get() *EnvStruct {
	if env == nil {
		env = &EnvStruct{}
		errs := EnvSchema.Parse(zenv.NewDataProvider(), env)
		if errs != nil {
			log.Fatal("[Taskwatch] Failed to parse environment variables", errs)
		}

		env.STUB_ADDR = "localhost:" + strconv.Itoa(env.PORT)
		env.STUB_URL = "http://" + env.STUB_ADDR
		if env.BASE_URL == "" {
			env.BASE_URL = env.STUB_URL
		}
	}
	return env
}
