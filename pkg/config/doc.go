/*
Package config builds the explicit configuration value threaded through every
Trawler component.

The environment is read exactly once (FromEnv); an optional YAML file can
overlay tuning knobs. Constructors receive the Config by value so there are
no process-wide singletons and tests can build arbitrary configurations.
*/
package config
