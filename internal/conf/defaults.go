// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "GradeFlow")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "gradeflow.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 1048576)

	viper.SetDefault("database.sqlite.enabled", true)
	viper.SetDefault("database.sqlite.path", "gradeflow.db")
	viper.SetDefault("database.mysql.enabled", false)
	viper.SetDefault("database.mysql.username", "gradeflow")
	viper.SetDefault("database.mysql.password", "")
	viper.SetDefault("database.mysql.database", "gradeflow")
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", "3306")

	viper.SetDefault("grading.qc.declaredvaluethreshold", 5000)
	viper.SetDefault("grading.qc.privilegedtiers", []string{"Express", "Priority"})
	viper.SetDefault("grading.qc.homecountry", "United States of America")
	viper.SetDefault("grading.label.setlinewidth", 32)
	viper.SetDefault("grading.label.playerlinewidth", 35)
	viper.SetDefault("grading.label.playerscanwidth", 21)
	viper.SetDefault("grading.label.maxsetlines", 3)
	viper.SetDefault("grading.lookupcachettl", 30)
	viper.SetDefault("grading.defaultserviceid", 1)

	viper.SetDefault("dispatch.workers", 4)
	viper.SetDefault("dispatch.draintimeout", 5)

	viper.SetDefault("crm.enabled", false)
	viper.SetDefault("crm.apiurl", "")
	viper.SetDefault("crm.bearertoken", "")

	viper.SetDefault("notification.enabled", false)
	viper.SetDefault("notification.apiurl", "")
	viper.SetDefault("notification.bearertoken", "")
	viper.SetDefault("notification.push.enabled", false)
	viper.SetDefault("notification.push.urls", []string{})

	viper.SetDefault("web.enabled", true)
	viper.SetDefault("web.port", "8080")
}
