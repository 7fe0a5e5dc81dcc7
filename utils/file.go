package utils

import (
	"archive/zip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const (
	FILE_EXT_SHP = ".shp"
	FILE_EXT_ZIP = ".zip"
)

var (
	ErrNoShpInZip = errors.New("no shp in zip")
	ErrZipSlip    = errors.New("illegal file path in zip")

	shpSidecars = []string{".shp", ".shx", ".dbf", ".prj", ".cpg", ".qix", ".sbn", ".sbx"}

	imageExts = map[string]bool{
		".jpg":  true,
		".jpeg": true,
		".png":  true,
		".tif":  true,
		".tiff": true,
		".bmp":  true,
		".webp": true,
	}
)

func GetUniqSubDir(parentPath string) (path string, err error) {
	path = filepath.Join(parentPath, uuid.NewString())
	err = os.MkdirAll(path, os.ModePerm)
	return
}

func GetFilenameWithoutExt(path string) (name string) {
	name = filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(path))
	return
}

// 批处理输出路径：<dir>/<文件名><suffix>.tif
func OutputPath(dir, input, suffix, ext string) string {
	return filepath.Join(dir, GetFilenameWithoutExt(input)+suffix+ext)
}

// 是否为支持的照片格式
func IsImageFile(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

// 列出目录下的照片（不递归，按文件名排序），跳过带skipSuffix的文件
func ListImages(dir, skipSuffix string) (images []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !IsImageFile(e.Name()) {
			continue
		}
		if skipSuffix != "" && strings.HasSuffix(GetFilenameWithoutExt(e.Name()), skipSuffix) {
			continue
		}
		images = append(images, filepath.Join(dir, e.Name()))
	}
	sort.Strings(images)
	return
}

// 删除shp及其附属文件
func RemoveShapefile(shp string) {
	prefix := strings.TrimSuffix(shp, filepath.Ext(shp))
	for _, ext := range shpSidecars {
		os.Remove(prefix + ext)
	}
}

func Unzip(zipFile, dstDir string) (files []string, err error) {
	r, err := zip.OpenReader(zipFile)
	if err != nil {
		return
	}
	defer r.Close()
	for _, f := range r.File {
		name := f.Name
		if f.NonUTF8 {
			if n, e := GbkStrToUtf8(name); e == nil {
				name = n
			}
		}
		path := filepath.Join(dstDir, name)
		if !strings.HasPrefix(path, filepath.Clean(dstDir)+string(os.PathSeparator)) {
			err = ErrZipSlip
			return
		}
		if f.FileInfo().IsDir() {
			if err = os.MkdirAll(path, os.ModePerm); err != nil {
				return
			}
			continue
		}
		if err = extract(f, path); err != nil {
			return
		}
		files = append(files, path)
	}
	return
}

func extract(f *zip.File, path string) (err error) {
	if err = os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return
	}
	rc, err := f.Open()
	if err != nil {
		return
	}
	defer rc.Close()
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode())
	if err != nil {
		return
	}
	_, err = io.Copy(out, rc)
	if e := out.Close(); err == nil {
		err = e
	}
	return
}

// 解压zip并返回其中的shp路径
func GetShpInZip(zipFile, dstDir string) (path string, err error) {
	shpFiles, err := Unzip(zipFile, dstDir)
	if err != nil {
		return
	}
	for _, file := range shpFiles {
		if strings.EqualFold(filepath.Ext(file), FILE_EXT_SHP) {
			path = file
			break
		}
	}
	if path == "" {
		err = ErrNoShpInZip
	}
	return
}
