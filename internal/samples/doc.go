// Package samples размещает реплики сэмплов на локальном диске.
//
// Namer строит пути вида <dir>/<file_hash>_<unix_micro>_<index>,
// Writer записывает байты сэмпла по этому пути.
//
// Анализатор удаляет файл после своего запуска, поэтому два запуска
// никогда не должны получить один и тот же путь.
package samples
