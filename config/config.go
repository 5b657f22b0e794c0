package config

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server   Server
	Database Database
	Sheet    Sheet
}

type Server struct {
	Port string
}

type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// Sheet describes the printed bubble-sheet layout. All geometry values are
// fractions of the page height (landscape A4); the same file drives both the
// generator and the scanner, which is what lets the scanner predict grid
// shapes without inspecting image content.
type Sheet struct {
	StudentIDRect Rect         `mapstructure:"student_id_rect"`
	AnswerRect    Rect         `mapstructure:"answer_rect"`
	RectSettings  RectSettings `mapstructure:"rect_settings"`
	Colors        Colors       `mapstructure:"colors"`
	Header        Header       `mapstructure:"header"`
	GCMultiplier  float64      `mapstructure:"gc_multiplier"`
}

type Rect struct {
	X      float64 `mapstructure:"x"`
	Y      float64 `mapstructure:"y"`
	Width  float64 `mapstructure:"width"`
	Height float64 `mapstructure:"height"`
	Grid   Grid    `mapstructure:"grid"`
	Label  Label   `mapstructure:"label"`
}

type Grid struct {
	Rows int `mapstructure:"rows"`
	Cols int `mapstructure:"cols"`
}

type Label struct {
	Main string `mapstructure:"main"`
	Rows string `mapstructure:"rows"`
	Cols string `mapstructure:"cols"` // "alphabetic" or "numeric"
}

type RectSettings struct {
	RectSpaceBetween float64 `mapstructure:"rect_space_between"`
	RectLineWidth    float64 `mapstructure:"rect_line_width"`
}

type Colors struct {
	MainColor string `mapstructure:"main_color"`
	OffColor  string `mapstructure:"off_color"`
	TextColor string `mapstructure:"text_color"`
}

type Header struct {
	Title    string  `mapstructure:"title"`
	Date     string  `mapstructure:"date"`
	Name     string  `mapstructure:"name"`
	FontSize float64 `mapstructure:"font_size"`
}

func NewConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config

	config.Server.Port = viper.GetString("SERVER_PORT")
	config.Database.Host = viper.GetString("DATABASE_HOST")
	config.Database.Port = viper.GetString("DATABASE_PORT")
	config.Database.User = viper.GetString("DATABASE_USER")
	config.Database.Password = viper.GetString("DATABASE_PASSWORD")
	config.Database.Name = viper.GetString("DATABASE_NAME")

	// A service without a sheet layout cannot generate or evaluate anything,
	// so a missing/broken layout file fails startup rather than requests.
	sheet, err := loadSheetConfig(viper.GetString("SHEET_CONFIG"))
	if err != nil {
		return nil, err
	}
	config.Sheet = *sheet

	log.Info().Str("port", config.Server.Port).Msg("Config loaded")
	return &config, nil
}

func loadSheetConfig(path string) (*Sheet, error) {
	if path == "" {
		path = "sheet.json"
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading sheet layout config %s: %w", path, err)
	}

	var sheet Sheet
	if err := v.Unmarshal(&sheet); err != nil {
		return nil, fmt.Errorf("parsing sheet layout config %s: %w", path, err)
	}

	if sheet.StudentIDRect.Grid.Rows <= 0 || sheet.StudentIDRect.Grid.Cols <= 0 ||
		sheet.AnswerRect.Grid.Rows <= 0 || sheet.AnswerRect.Grid.Cols <= 0 {
		return nil, fmt.Errorf("sheet layout config %s: grid dimensions must be positive", path)
	}
	if sheet.GCMultiplier == 0 {
		sheet.GCMultiplier = 1.0
	}

	return &sheet, nil
}
