// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation,
// which keeps API secrets out of the file itself:
//
//	account:
//	  application_id: ${WOO_APPLICATION_ID}
//	  api_key: ${WOO_API_KEY}
//	  api_secret: ${WOO_API_SECRET}
package config
