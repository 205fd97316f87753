package utils

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	environmentKeySeparatorConstant           = "_"
	configurationKeySeparatorConstant         = "."
	sliceValueSeparatorConstant               = ","
	embeddedConfigurationReadErrorConstant    = "unable to read embedded configuration: %w"
	configurationFileReadErrorConstant        = "unable to read configuration file %s: %w"
	configurationSearchErrorConstant          = "unable to load configuration from search paths: %w"
	configurationEnvironmentBindErrorConstant = "unable to bind environment for %s: %w"
	configurationDecodeErrorConstant          = "unable to decode configuration: %w"
)

// LoadedConfiguration describes where the effective configuration came from.
type LoadedConfiguration struct {
	ConfigFileUsed string
}

// ConfigurationLoader layers embedded defaults, a configuration file and the environment.
type ConfigurationLoader struct {
	configurationName     string
	configurationType     string
	environmentPrefix     string
	searchPaths           []string
	embeddedConfiguration []byte
	embeddedType          string
	environmentAliases    map[string][]string
}

// NewConfigurationLoader constructs a loader searching searchPaths in order.
func NewConfigurationLoader(configurationName string, configurationType string, environmentPrefix string, searchPaths []string) *ConfigurationLoader {
	return &ConfigurationLoader{
		configurationName:  configurationName,
		configurationType:  configurationType,
		environmentPrefix:  environmentPrefix,
		searchPaths:        append([]string(nil), searchPaths...),
		environmentAliases: map[string][]string{},
	}
}

// SetEmbeddedConfiguration registers the lowest-precedence configuration layer.
func (loader *ConfigurationLoader) SetEmbeddedConfiguration(data []byte, configurationType string) {
	loader.embeddedConfiguration = append([]byte(nil), data...)
	loader.embeddedType = configurationType
}

// BindEnvironmentAliases maps configuration keys to additional environment variable names.
// The prefixed variable still takes precedence over any alias.
func (loader *ConfigurationLoader) BindEnvironmentAliases(aliases map[string][]string) {
	for key, names := range aliases {
		normalizedKey := strings.ToLower(key)
		loader.environmentAliases[normalizedKey] = append(loader.environmentAliases[normalizedKey], names...)
	}
}

// EnvironmentVariableName returns the prefixed environment variable consulted for key.
func (loader *ConfigurationLoader) EnvironmentVariableName(key string) string {
	normalized := strings.ToUpper(strings.ReplaceAll(key, configurationKeySeparatorConstant, environmentKeySeparatorConstant))
	if len(loader.environmentPrefix) == 0 {
		return normalized
	}
	return loader.environmentPrefix + environmentKeySeparatorConstant + normalized
}

// LoadConfiguration decodes the layered configuration into target.
func (loader *ConfigurationLoader) LoadConfiguration(configurationFilePath string, defaults map[string]any, target any) (LoadedConfiguration, error) {
	configurationReader := viper.New()
	configurationReader.SetConfigName(loader.configurationName)
	configurationReader.SetConfigType(loader.configurationType)

	for key, value := range defaults {
		configurationReader.SetDefault(key, value)
	}

	if len(loader.embeddedConfiguration) > 0 {
		embeddedType := loader.embeddedType
		if len(embeddedType) == 0 {
			embeddedType = loader.configurationType
		}
		configurationReader.SetConfigType(embeddedType)
		if readError := configurationReader.ReadConfig(bytes.NewReader(loader.embeddedConfiguration)); readError != nil {
			return LoadedConfiguration{}, fmt.Errorf(embeddedConfigurationReadErrorConstant, readError)
		}
		configurationReader.SetConfigType(loader.configurationType)
	}

	configurationReader.SetEnvPrefix(loader.environmentPrefix)
	configurationReader.SetEnvKeyReplacer(strings.NewReplacer(configurationKeySeparatorConstant, environmentKeySeparatorConstant))
	configurationReader.AutomaticEnv()

	aliasKeys := make([]string, 0, len(loader.environmentAliases))
	for key := range loader.environmentAliases {
		aliasKeys = append(aliasKeys, key)
	}
	sort.Strings(aliasKeys)
	for _, key := range aliasKeys {
		bindArguments := append([]string{key, loader.EnvironmentVariableName(key)}, loader.environmentAliases[key]...)
		if bindError := configurationReader.BindEnv(bindArguments...); bindError != nil {
			return LoadedConfiguration{}, fmt.Errorf(configurationEnvironmentBindErrorConstant, key, bindError)
		}
	}

	if len(configurationFilePath) > 0 {
		configurationReader.SetConfigFile(configurationFilePath)
		if mergeError := configurationReader.MergeInConfig(); mergeError != nil {
			return LoadedConfiguration{}, fmt.Errorf(configurationFileReadErrorConstant, configurationFilePath, mergeError)
		}
	} else {
		for _, searchPath := range loader.searchPaths {
			if len(strings.TrimSpace(searchPath)) == 0 {
				continue
			}
			configurationReader.AddConfigPath(searchPath)
		}
		if len(loader.searchPaths) > 0 {
			if mergeError := configurationReader.MergeInConfig(); mergeError != nil {
				var notFoundError viper.ConfigFileNotFoundError
				if !errors.As(mergeError, &notFoundError) {
					return LoadedConfiguration{}, fmt.Errorf(configurationSearchErrorConstant, mergeError)
				}
			}
		}
	}

	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(sliceValueSeparatorConstant),
	))
	if decodeError := configurationReader.Unmarshal(target, decodeHook); decodeError != nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationDecodeErrorConstant, decodeError)
	}

	return LoadedConfiguration{ConfigFileUsed: configurationReader.ConfigFileUsed()}, nil
}
