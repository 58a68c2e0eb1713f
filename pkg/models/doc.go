// Package models contains the data types shared by the SceneSwitch engine, store and API.
package models
