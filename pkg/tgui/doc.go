// Package tgui holds small helpers for Telegram HTML parse mode messages.
package tgui
